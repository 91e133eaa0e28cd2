package main

import (
	"testing"

	"golang.org/x/crypto/bcrypt"

	"dagocoffee/counter/internal/config"
)

const strongSecret = "0123456789abcdef0123456789abcdef"

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	cases := map[string]config.Config{
		"short secret":   {SessionSecret: "short", GatePassword: "739154"},
		"missing gate":   {SessionSecret: strongSecret},
		"short gate":     {SessionSecret: strongSecret, GatePassword: "12345"},
		"sequential":     {SessionSecret: strongSecret, GatePassword: "345678"},
		"repeated":       {SessionSecret: strongSecret, GatePassword: "9999999"},
		"known weak one": {SessionSecret: strongSecret, GatePassword: "password"},
	}
	for name, cfg := range cases {
		if err := validateSecurityConfig(cfg); err == nil {
			t.Fatalf("%s: expected weak security config to be rejected", name)
		}
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{SessionSecret: strongSecret, GatePassword: "739154"})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestValidateSecurityConfigAcceptsBcryptHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("12345"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	err = validateSecurityConfig(config.Config{SessionSecret: strongSecret, GatePassword: string(hash)})
	if err != nil {
		t.Fatalf("expected bcrypt hash to pass, got %v", err)
	}
}
