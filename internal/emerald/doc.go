// Package emerald is the client for the Emerald customer REST API.
//
// It performs the two calls the daemon needs before opening a messaging
// session: sign-in (email and password for a bearer token) and the
// property list (owned and shared properties with their heat pumps).
//
// Requests carry the same identity headers and app fields the vendor's
// mobile app sends.
//
// # Errors
//
// Rejections surface as *APIError wrapping ErrAuthentication or
// ErrInventory. An account with no heat pumps yields ErrEmptyInventory.
//
// # Usage
//
//	client := emerald.New(cfg.Emerald)
//	tok, err := client.Login(ctx, cfg.Emerald.Email, cfg.Emerald.Password)
//	if err != nil {
//	    return err
//	}
//	properties, err := client.FetchInventory(ctx, tok)
package emerald
