package inbound

import (
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/hastexo/webhook-receiver/core"
)

// FromHTTPRequest reads the request into a vendor-neutral envelope.
// The body is fully buffered so handlers can verify signatures against
// the exact bytes the vendor signed; form fields are decoded separately
// for vendors that post url-encoded pings.
func FromHTTPRequest(r *http.Request, vendor string, maxBodyBytes int64) (core.InboundRequest, error) {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultRequestBodyLimit
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return core.InboundRequest{}, err
	}
	if int64(len(body)) > maxBodyBytes {
		return core.InboundRequest{}, io.ErrShortBuffer
	}

	contentType := r.Header.Get("Content-Type")
	form := map[string]string{}
	if isFormContentType(contentType) {
		if values, parseErr := url.ParseQuery(string(body)); parseErr == nil {
			for key := range values {
				form[key] = values.Get(key)
			}
		}
	}

	return core.InboundRequest{
		Vendor:      core.NormalizeVendor(vendor),
		Headers:     flattenHeaders(r.Header),
		Body:        body,
		ContentType: contentType,
		RemoteAddr:  r.RemoteAddr,
		Form:        form,
		Metadata:    map[string]any{},
	}, nil
}

func isFormContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/x-www-form-urlencoded"
}

func flattenHeaders(headers http.Header) map[string]string {
	if len(headers) == 0 {
		return map[string]string{}
	}
	flat := make(map[string]string, len(headers))
	for key, values := range headers {
		if len(values) == 0 {
			flat[key] = ""
			continue
		}
		flat[key] = strings.Join(values, ",")
	}
	return flat
}
