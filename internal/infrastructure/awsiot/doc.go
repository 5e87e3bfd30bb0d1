// Package awsiot connects the Emerald HWS session manager to AWS IoT Core.
//
// The vendor's mobile app authenticates to the broker with an
// unauthenticated Cognito identity. This package reproduces that flow:
//
//  1. GetId on the configured identity pool (once, cached)
//  2. GetCredentialsForIdentity for temporary credentials (cached until expiry)
//  3. SigV4-presign wss://{endpoint}/mqtt for service "iotdevicegateway"
//  4. Create an mqtt.Session with a random client identifier
//
// Dialer implements session.Dialer; Reset is wired as part of the
// re-authentication hook run after a client identifier rejection.
package awsiot
