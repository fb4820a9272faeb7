package catalog

import "strings"

// maskVisible is how many leading characters of a code stay readable.
const maskVisible = 6

// MaskCode hides everything past the first six characters of a code.
func MaskCode(code string) string {
	if len(code) <= maskVisible {
		return code
	}
	return code[:maskVisible] + strings.Repeat("*", len(code)-maskVisible)
}

// MaskCodeInRaw masks the first occurrence of the code inside its raw
// display block.
func MaskCodeInRaw(raw, code string) string {
	return strings.Replace(raw, code, MaskCode(code), 1)
}
