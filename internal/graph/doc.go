// Package graph implements directory.Client on top of Microsoft Graph.
//
// Credentials are managed through three calls on the application object:
//
//	POST  /applications/{id}/addPassword   add a credential, returns its secret once
//	GET   /applications/{id}               read passwordCredentials
//	PATCH /applications/{id}               replace passwordCredentials wholesale
//
// The client authenticates with the client-credentials flow using the
// application's own current secret, so the application must be allowed to
// manage itself (Application.ReadWrite.OwnedBy with the application listed
// as its own owner, or Application.ReadWrite.All).
package graph
