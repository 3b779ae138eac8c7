// qwenchat2api is an OpenAI-compatible proxy in front of the Qwen
// chat service.
//
// It accepts standard chat-completion requests, translates them to the
// upstream's format, and converts the streamed responses back,
// managing a rotating pool of upstream credentials along the way.
//
// Usage:
//
//	# Start the proxy with default configuration
//	qwenchat2api run
//
//	# Start with a configuration file
//	qwenchat2api run --config /etc/qwenchat2api/config.yaml
//
//	# Import credentials from a file of cookie-header lines
//	qwenchat2api credentials import --file cookies.txt
//
//	# Show version information
//	qwenchat2api version
package main

func main() {
	Execute()
}
