// Package devserver is a small fiber application that implements the auth
// API consumed by the client. It keeps users and sessions in memory and is
// meant for local development and end to end tests only.
package devserver
