// Package inspect scans file content for suspicious tokens such as shell
// execution, dynamic code loading or outbound network calls, and reports
// each hit with a window of surrounding text.
package inspect

// DefaultRadius is the number of characters captured on each side of a hit.
const DefaultRadius = 30

// Ellipsis marks a context window that was cut away from an edge of the content.
const Ellipsis = "..."

// DefaultTokens is the token list used when none is configured.
var DefaultTokens = []string{
	"exec",
	"chmod",
	"mkdir",
	"file_put_contents",
	"fwrite",
	"$GLOBAL",
	"base64_decode",
	"getenv",
	"set_time_limit",
	"rmdir",
	"mail",
	"curl_init",
	"header",
}
