package document

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/kailas-cloud/docqa/internal/domain"
)

// extractText decodes plain text and email bodies. A charset declared in the
// Content-Type is honored; otherwise the bytes are read as UTF-8 and invalid
// sequences are dropped.
func extractText(data []byte, contentType string) (string, error) {
	if _, params, err := mime.ParseMediaType(contentType); err == nil && params["charset"] != "" {
		r, err := charset.NewReader(bytes.NewReader(data), contentType)
		if err != nil {
			return "", fmt.Errorf("%w: charset %q: %v", domain.ErrUnsupportedFormat, params["charset"], err)
		}
		decoded, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("%w: decode text: %v", domain.ErrUnsupportedFormat, err)
		}
		data = decoded
	}
	return strings.ToValidUTF8(string(data), ""), nil
}
