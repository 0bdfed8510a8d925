package warehouse

import (
	"errors"
	"net/http"

	cbigquery "cloud.google.com/go/bigquery"
	pkgerrors "github.com/angelmondragon/ltv-backend/pkg/errors"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var transientHTTP = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

var transientGRPC = map[codes.Code]bool{
	codes.Aborted:           true,
	codes.DeadlineExceeded:  true,
	codes.Internal:          true,
	codes.ResourceExhausted: true,
	codes.Unavailable:       true,
}

// IsRetryable reports whether a warehouse failure is transient. Batch errors
// are retryable only when every inner error is; errors carrying none of the
// google transport types fall back to the pkg/errors code table.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var multi cbigquery.MultiError
	if errors.As(err, &multi) {
		return allRetryable(len(multi), func(i int) error { return multi[i] })
	}
	var rows cbigquery.PutMultiError
	if errors.As(err, &rows) {
		return allRetryable(len(rows), func(i int) error { return rows[i].Errors })
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return transientHTTP[apiErr.Code]
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return transientGRPC[st.Code()]
	}
	return pkgerrors.IsRetryable(err)
}

func allRetryable(n int, at func(int) error) bool {
	if n == 0 {
		return false
	}
	for i := 0; i < n; i++ {
		if !IsRetryable(at(i)) {
			return false
		}
	}
	return true
}
