// Package sigsdk is the Go client for the mailsig HTTP API and holds the
// request and response types shared with the server.
//
// Unauthenticated calls live on Client:
//
//	c := sigsdk.NewClient("http://localhost:8080")
//	html, err := c.GetSignature(ctx, "ana@example.com")
//
// Everything under /v1/admin, /v1/templates and /v1/assignments needs a
// Session, obtained by logging in:
//
//	s, err := c.Login(ctx, "admin", "secret")
//	if err != nil {
//		return err
//	}
//	defer s.Logout(ctx)
//
//	id, err := s.SaveTemplate(ctx, sigsdk.SaveTemplateRequest{Name: "default", HTML: html, IsDefault: true})
//
// Non-2xx responses come back as *APIError, which carries the status code and
// the machine readable error code:
//
//	var apiErr *sigsdk.APIError
//	if errors.As(err, &apiErr) && apiErr.Code == sigsdk.ErrorCodeTemplateNotFound {
//		...
//	}
package sigsdk
