package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize_GreetingSpan(t *testing.T) {
	body := "--=_Part_12345\nContent-Type: text/plain\n\n" +
		"Dear John, thank you for your order. We will ship it tomorrow.\n" +
		"Disclaimer: This email and any attachments are confidential."

	out := Sanitize(body)

	assert.True(t, strings.HasPrefix(out, "Dear John"), "got %q", out)
	assert.Contains(t, out, "thank you for your order")
	assert.NotContains(t, out, "Disclaimer")
	assert.NotContains(t, out, "confidential")
	assert.NotContains(t, out, "Content-Type")
}

func TestSanitize_GreetingWithColon(t *testing.T) {
	body := "Dear: Alice\nYour invoice is attached.\nDISCLAIMER - do not reply"

	out := Sanitize(body)

	assert.Contains(t, out, "Your invoice is attached")
	assert.NotContains(t, out, "do not reply")
}

func TestSanitize_DoctypeSpan(t *testing.T) {
	body := "Content-Type: text/html; charset=utf-8\n\n" +
		"<!DOCTYPE html><html><body><p>Quarterly report attached.</p></body></html>\n--boundary--"

	out := Sanitize(body)

	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html"), "got %q", out)
	assert.True(t, strings.HasSuffix(out, "</body></html>"), "got %q", out)
	assert.Contains(t, out, "Quarterly report attached")
	assert.NotContains(t, out, "--boundary--")
}

func TestSanitize_FallbackStripsArtifacts(t *testing.T) {
	body := "--=_NextPart_000_0012\n" +
		"Content-Transfer-Encoding: quoted-printable\n" +
		"Meeting moved to 3pm=2C see you there.=\nSecond line.\n" +
		"QUJDREVGR0hJSktMTU5PUFFSU1RVVldYWVphYmNkZWZnaGlqa2xtbm9wcXJzdHV2d3h5ejAxMjM0NTY3ODk5\n" +
		"visit javascript:alert(1) now\n" +
		"ref 123456789012345678901234\n\n\n\n" +
		"end\u200B of message"

	out := Sanitize(body)

	assert.Contains(t, out, "Meeting moved to 3pm, see you there.Second line.")
	assert.NotContains(t, out, "Content-Transfer-Encoding")
	assert.NotContains(t, out, "NextPart")
	assert.NotContains(t, out, "javascript:")
	assert.NotContains(t, out, "QUJDREVGR0hJSktMTU5PUFFSU1RVVldYWVph")
	assert.NotContains(t, out, "123456789012345678901234")
	assert.NotContains(t, out, "\u200B")
	assert.NotContains(t, out, " ")
	assert.NotContains(t, out, "\n\n\n")
}

func TestSanitize_QuotedPrintableEscapes(t *testing.T) {
	out := Sanitize("caf=C3=A9 =E2=82=AC100")
	// =XX 十六进制按字节解码
	assert.Equal(t, "café €100", out)
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{
		"Dear Bob, the servers are back up.\nDisclaimer: internal use only.",
		"<!DOCTYPE html><html><body>hello</body></html>",
		"--=_Part_1\nContent-Type: text/plain\n\nplain text=2C with artifacts\n\n\n\ndone",
		"nothing unusual at all",
		"",
	}

	for _, in := range inputs {
		once := Sanitize(in)
		twice := Sanitize(once)
		assert.Equal(t, once, twice, "input %q", in)
	}
}

func TestSanitize_NeverReturnsGreeting_WithoutDisclaimer(t *testing.T) {
	// 有问候语但没有免责声明标记时走兜底路径，内容保留
	body := "Dear Carol, lunch on Friday?"
	out := Sanitize(body)
	assert.Contains(t, out, "lunch on Friday?")
}

func TestSanitize_EmptyInput(t *testing.T) {
	assert.Equal(t, "", Sanitize(""))
}

func TestSanitize_StripsInvisibleRunes(t *testing.T) {
	out := Sanitize("\uFEFFre\u200Bport\u200C at\u200Dtached")
	assert.Equal(t, "report attached", out)
}
