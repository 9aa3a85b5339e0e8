// Package session implements the single-user admin login.
//
// The admin password is held only as a bcrypt hash. A successful login
// creates a random session token stored in memory with an expiry and sent
// to the browser as an HttpOnly, SameSite=Strict cookie. RequireAuth guards
// the admin routes.
package session
