// Package oauth implements the Google authorization-code flow with
// golang.org/x/oauth2 and turns the provider's userinfo response into a
// blogauth.FederatedProfile for Engine.CompleteFederatedSignIn.
package oauth
