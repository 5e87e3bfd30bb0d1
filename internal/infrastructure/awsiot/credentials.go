package awsiot

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentity"
)

// credentialSource is the credential source name reported in aws.Credentials.
const credentialSource = "CognitoUnauthenticatedIdentity"

// identityAPI is the subset of the Cognito Identity client used here.
type identityAPI interface {
	GetId(ctx context.Context, params *cognitoidentity.GetIdInput, optFns ...func(*cognitoidentity.Options)) (*cognitoidentity.GetIdOutput, error)
	GetCredentialsForIdentity(ctx context.Context, params *cognitoidentity.GetCredentialsForIdentityInput, optFns ...func(*cognitoidentity.Options)) (*cognitoidentity.GetCredentialsForIdentityOutput, error)
}

// CognitoProvider issues temporary AWS credentials for an unauthenticated
// identity in a Cognito identity pool. The identity is obtained once and
// reused until Reset.
//
// It implements aws.CredentialsProvider; wrap it in aws.NewCredentialsCache
// to avoid a round trip per connection.
type CognitoProvider struct {
	api    identityAPI
	poolID string

	mu         sync.Mutex
	identityID string
}

// NewCognitoProvider creates a provider for poolID in region. The Cognito
// calls themselves are made anonymously.
func NewCognitoProvider(region, poolID string) *CognitoProvider {
	client := cognitoidentity.New(cognitoidentity.Options{
		Region:      region,
		Credentials: aws.AnonymousCredentials{},
	})
	return newCognitoProvider(client, poolID)
}

func newCognitoProvider(api identityAPI, poolID string) *CognitoProvider {
	return &CognitoProvider{api: api, poolID: poolID}
}

// IdentityID returns the current identity, or "" before the first Retrieve.
func (p *CognitoProvider) IdentityID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.identityID
}

// Reset discards the cached identity so the next Retrieve requests a new one.
func (p *CognitoProvider) Reset() {
	p.mu.Lock()
	p.identityID = ""
	p.mu.Unlock()
}

// Retrieve returns credentials for the pool identity.
func (p *CognitoProvider) Retrieve(ctx context.Context) (aws.Credentials, error) {
	id, err := p.identity(ctx)
	if err != nil {
		return aws.Credentials{}, err
	}

	out, err := p.api.GetCredentialsForIdentity(ctx, &cognitoidentity.GetCredentialsForIdentityInput{
		IdentityId: aws.String(id),
	})
	if err != nil {
		return aws.Credentials{}, fmt.Errorf("%w: %w", ErrCredentials, err)
	}
	c := out.Credentials
	if c == nil || aws.ToString(c.AccessKeyId) == "" || aws.ToString(c.SecretKey) == "" {
		return aws.Credentials{}, fmt.Errorf("%w: empty credentials for %s", ErrCredentials, id)
	}

	creds := aws.Credentials{
		AccessKeyID:     aws.ToString(c.AccessKeyId),
		SecretAccessKey: aws.ToString(c.SecretKey),
		SessionToken:    aws.ToString(c.SessionToken),
		Source:          credentialSource,
	}
	if c.Expiration != nil {
		creds.CanExpire = true
		creds.Expires = *c.Expiration
	}
	return creds, nil
}

func (p *CognitoProvider) identity(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.identityID != "" {
		return p.identityID, nil
	}

	out, err := p.api.GetId(ctx, &cognitoidentity.GetIdInput{
		IdentityPoolId: aws.String(p.poolID),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrIdentity, err)
	}
	id := aws.ToString(out.IdentityId)
	if id == "" {
		return "", fmt.Errorf("%w: empty identity for pool %s", ErrIdentity, p.poolID)
	}
	p.identityID = id
	return id, nil
}
