package session

import (
	"time"

	"golang.org/x/oauth2"
)

// expiryBuffer treats tokens as expired slightly early so a request does not
// race the real expiry.
const expiryBuffer = 60 * time.Second

// Session is the persisted operator session.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`

	// Identity, decoded from the access token claims.
	UserID   string `json:"user_id,omitempty"`
	TenantID string `json:"tenant_id,omitempty"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Issuer   string `json:"issuer,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Valid reports whether the access token is present and not about to expire.
// Tokens without an expiry are assumed valid until the gateway says otherwise.
func (s *Session) Valid(now time.Time) bool {
	if s == nil || s.AccessToken == "" {
		return false
	}
	if s.Expiry.IsZero() {
		return true
	}
	return now.Add(expiryBuffer).Before(s.Expiry)
}

// Refreshable reports whether an expired session can be renewed.
func (s *Session) Refreshable() bool {
	return s != nil && s.RefreshToken != ""
}

// Token converts the session to an oauth2 token.
func (s *Session) Token() *oauth2.Token {
	tokenType := s.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    tokenType,
		Expiry:       s.Expiry,
	}
}

// FromToken builds a session from an oauth2 token, filling identity fields
// from the access token claims when it is a JWT.
func FromToken(tok *oauth2.Token, now time.Time) *Session {
	s := &Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
		CreatedAt:    now,
	}
	if idToken, ok := tok.Extra("id_token").(string); ok {
		s.IDToken = idToken
	}
	s.applyClaims()
	return s
}

// applyClaims copies identity claims into the session. Opaque tokens are
// left as they are.
func (s *Session) applyClaims() {
	claims, err := ParseClaims(s.AccessToken)
	if err != nil {
		return
	}
	s.UserID = claims.Subject
	s.TenantID = claims.TenantID
	s.Email = claims.Email
	s.Username = claims.PreferredUsername
	s.Issuer = claims.Issuer
	if s.Expiry.IsZero() {
		s.Expiry = claims.Expiry()
	}
}
