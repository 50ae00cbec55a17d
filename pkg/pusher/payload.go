package pusher

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/sguter90/weatherlog/pkg/models"
)

// MaxPayloadBytes bounds the body a station may upload
const MaxPayloadBytes = 1 << 20

// ParsePayload collects the fields of an upload. Query parameters are always
// included; a POST body adds to (and overrides) them. A body that cannot be
// decoded for its declared type is treated as empty, since station firmware is
// often sloppy. Unknown content types yield ErrUnsupportedMediaType.
func ParsePayload(r *http.Request) (models.Fields, error) {
	fields := models.Fields{}
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}

	if r.Method != http.MethodPost {
		return fields, nil
	}

	mediaType := ""
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return nil, ErrUnsupportedMediaType
		}
		mediaType = strings.ToLower(mt)
	}

	switch mediaType {
	case "application/json", "application/x-www-form-urlencoded", "":
	default:
		return nil, ErrUnsupportedMediaType
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxPayloadBytes))
	if err != nil || len(bytes.TrimSpace(body)) == 0 {
		return fields, nil
	}

	switch mediaType {
	case "application/json":
		mergeJSON(fields, body)
	case "application/x-www-form-urlencoded":
		mergeForm(fields, string(body))
	default:
		if bytes.Contains(body, []byte("=")) {
			mergeForm(fields, string(body))
		}
	}

	return fields, nil
}

func mergeJSON(fields models.Fields, body []byte) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return
	}
	for k, v := range obj {
		fields[k] = v
	}
}

func mergeForm(fields models.Fields, body string) {
	values, err := url.ParseQuery(body)
	if err != nil {
		return
	}
	for k, v := range values {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
}
