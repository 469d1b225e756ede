package inbound

import (
	"net/http"
	"strings"
)

const defaultRequestBodyLimit int64 = 1 << 20 // 1 MiB

// HTTPHandler exposes the dispatcher at POST /webhooks/{vendor}.
// The vendor segment selects the registered handler; response bodies
// are intentionally empty since callers only act on the status code.
type HTTPHandler struct {
	Dispatcher   *Dispatcher
	PathPrefix   string
	MaxBodyBytes int64
}

func NewHTTPHandler(dispatcher *Dispatcher) *HTTPHandler {
	return &HTTPHandler{
		Dispatcher:   dispatcher,
		PathPrefix:   "/webhooks/",
		MaxBodyBytes: defaultRequestBodyLimit,
	}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Dispatcher == nil {
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "", http.StatusMethodNotAllowed)
		return
	}

	vendor := h.vendorFromPath(r.URL.Path)
	if vendor == "" {
		http.Error(w, "", http.StatusNotFound)
		return
	}

	req, err := FromHTTPRequest(r, vendor, h.bodyLimit())
	if err != nil {
		http.Error(w, "", http.StatusBadRequest)
		return
	}

	result, _ := h.Dispatcher.Dispatch(r.Context(), req)
	status := result.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	w.WriteHeader(status)
}

func (h *HTTPHandler) vendorFromPath(path string) string {
	prefix := h.PathPrefix
	if prefix == "" {
		prefix = "/webhooks/"
	}
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	vendor := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if strings.Contains(vendor, "/") {
		return ""
	}
	return vendor
}

func (h *HTTPHandler) bodyLimit() int64 {
	if h.MaxBodyBytes > 0 {
		return h.MaxBodyBytes
	}
	return defaultRequestBodyLimit
}
