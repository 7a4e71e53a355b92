// Package helpers provides shared test utilities: in-memory token signers,
// HTTP request builders, problem-response assertions, oops error-code
// assertions and record existence checks.
//
//	signer := helpers.NewTestSigner(t, time.Hour)
//	rr := helpers.NewRequest(t, http.MethodGet, "/api/session").
//	    WithBearer(helpers.SignSession(t, signer, identity)).
//	    Do(router)
//	helpers.AssertStatus(t, rr, http.StatusOK)
package helpers
