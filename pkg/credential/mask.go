package credential

import "strings"

// maxMaskRun caps the number of mask characters in a masked value so
// long secrets do not blow up display width and the mask length does
// not reveal the secret's exact length.
const maxMaskRun = 20

// MaskValue returns a display-safe form of a secret. Values longer than
// 8 characters keep their first and last 4 characters with the interior
// replaced by a bounded run of '*'. Values of 8 characters or fewer are
// returned unchanged; secrets that short are assumed to be test values.
func MaskValue(value string) string {
	if len(value) <= 8 {
		return value
	}

	run := len(value) - 8
	if run > maxMaskRun {
		run = maxMaskRun
	}

	return value[:4] + strings.Repeat("*", run) + value[len(value)-4:]
}
