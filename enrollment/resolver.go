package enrollment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/hastexo/webhook-receiver/core"
)

// ErrCourseLookup marks a SKU whose course page resolved but whose final
// URL carries no recognizable course id.
var ErrCourseLookup = errors.New("enrollment: course id could not be resolved")

var (
	courseIDPattern  = regexp.MustCompile(`^course-v1:[^/]+$`)
	aboutPathPattern = regexp.MustCompile(`/courses/([^/]+)/about`)
)

// CourseIDResolver maps vendor SKUs to course identifiers. SKUs already
// shaped like a course id pass through untouched. Anything else names a
// course shortlink under the LMS: the resolver issues a HEAD request to
// <lms>/<sku>, follows redirects, and extracts the course id from the
// about-page path it lands on.
type CourseIDResolver struct {
	lmsBaseURL string
	httpClient HTTPDoer
	timeout    time.Duration
}

func NewCourseIDResolver(lmsBaseURL string, httpClient HTTPDoer, timeout time.Duration) *CourseIDResolver {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &CourseIDResolver{
		lmsBaseURL: strings.TrimRight(strings.TrimSpace(lmsBaseURL), "/"),
		httpClient: httpClient,
		timeout:    timeout,
	}
}

func (r *CourseIDResolver) Resolve(ctx context.Context, sku string) (string, error) {
	if r == nil || r.httpClient == nil {
		return "", fmt.Errorf("enrollment: course resolver is not configured")
	}
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return "", fmt.Errorf("enrollment: sku is required")
	}
	if courseIDPattern.MatchString(sku) {
		return sku, nil
	}
	if r.lmsBaseURL == "" {
		return "", fmt.Errorf("enrollment: lms base url is required to look up sku %q", sku)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	requestCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	lookupURL := r.lmsBaseURL + "/" + strings.TrimLeft(sku, "/")
	httpReq, err := http.NewRequestWithContext(requestCtx, http.MethodHead, lookupURL, nil)
	if err != nil {
		return "", fmt.Errorf("enrollment: build course lookup for %q: %w", sku, err)
	}
	response, err := r.httpClient.Do(httpReq)
	if err != nil {
		return "", &APIError{Message: fmt.Sprintf("course lookup for %q failed", sku), Cause: err}
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusBadRequest {
		return "", &APIError{
			StatusCode: response.StatusCode,
			Message:    fmt.Sprintf("course lookup for %q rejected", sku),
		}
	}

	// The client has already chased redirects; the request attached to the
	// response points at the final URL.
	finalPath := lookupURL
	if response.Request != nil && response.Request.URL != nil {
		finalPath = response.Request.URL.Path
	}
	match := aboutPathPattern.FindStringSubmatch(finalPath)
	if len(match) < 2 {
		return "", fmt.Errorf("%w: no course id in %q for sku %q", ErrCourseLookup, finalPath, sku)
	}
	return match[1], nil
}

var _ core.CourseResolver = (*CourseIDResolver)(nil)
