package awsiot

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
)

const (
	// signingService is the SigV4 service name for the IoT data plane.
	signingService = "iotdevicegateway"

	// emptyPayloadHash is the SHA-256 of an empty body.
	emptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

	// presignExpiry is how long a presigned URL accepts new connections.
	presignExpiry = 24 * time.Hour
)

// PresignURL returns a SigV4-signed "wss://{endpoint}/mqtt" URL.
//
// The IoT gateway expects the session token outside the signature, so it
// is appended after signing.
func PresignURL(ctx context.Context, creds aws.Credentials, endpoint, region string, signingTime time.Time) (string, error) {
	query := url.Values{}
	query.Set("X-Amz-Expires", strconv.Itoa(int(presignExpiry/time.Second)))

	u := url.URL{
		Scheme:   "wss",
		Host:     endpoint,
		Path:     "/mqtt",
		RawQuery: query.Encode(),
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: building request: %w", ErrPresign, err)
	}

	unscoped := creds
	unscoped.SessionToken = ""

	signed, _, err := v4.NewSigner().PresignHTTP(ctx, unscoped, req, emptyPayloadHash, signingService, region, signingTime.UTC())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPresign, err)
	}

	if creds.SessionToken != "" {
		signed += "&X-Amz-Security-Token=" + url.QueryEscape(creds.SessionToken)
	}
	return signed, nil
}
