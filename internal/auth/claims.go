package auth

// Claims is the verified payload of a token.
type Claims map[string]any

// Subject returns the sub claim.
func (c Claims) Subject() string {
	return c.str("sub")
}

// TokenUse returns "id" or "access".
func (c Claims) TokenUse() string {
	return c.str("token_use")
}

// DisplayName prefers cognito:username, then username, then "Unknown".
func (c Claims) DisplayName() string {
	if name := c.str("cognito:username"); name != "" {
		return name
	}
	if name := c.str("username"); name != "" {
		return name
	}
	return "Unknown"
}

func (c Claims) str(key string) string {
	s, _ := c[key].(string)
	return s
}
