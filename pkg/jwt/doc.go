// Package jwt signs and verifies the RS256 session tokens.
//
// A Service built with a private key can both sign and verify; one built
// from a public key alone can only verify:
//
//	svc, err := jwt.NewService(jwt.Config{
//	    PrivateKeyPath: "keys/private.pem",
//	    Issuer:         "kathaghar",
//	    Expiration:     30 * 24 * time.Hour,
//	})
//	token, err := svc.Sign(jwt.Claims{UserID: "user:7f3c", Institution: "TU"})
//	claims, err := svc.Validate(token)
package jwt
