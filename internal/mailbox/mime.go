package mailbox

import (
	"bytes"
	"io"
	"strings"

	"github.com/emersion/go-message"
	// registers decoders for non-UTF-8 charsets (iso-8859-*, windows-125x, ...)
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// FlattenText returns the readable text of a raw RFC 822 message. Multipart
// messages contribute the concatenation of their text/plain parts; parts that
// fail to decode are skipped. Single-part messages contribute their whole body.
func FlattenText(raw []byte) string {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return string(raw)
	}
	defer mr.Close()

	mediaType, _, _ := mr.Header.ContentType()
	multipart := strings.HasPrefix(mediaType, "multipart/")

	var text strings.Builder
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				continue
			}
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		if multipart {
			contentType, _, _ := h.ContentType()
			if contentType != "text/plain" {
				continue
			}
		}

		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}
		text.Write(body)
	}
	return text.String()
}
