// Package upstream is the HTTP client for the upstream conversational
// AI service. It sends transformed chat bodies, classifies upstream
// failures into credential-health signals (4xx) versus upstream trouble
// (5xx and transport errors), and fetches the model catalog.
package upstream
