package auth

import (
	"testing"

	"github.com/khanghh/kattest/model"
)

func TestPrincipal_HasRole(t *testing.T) {
	p := NewPrincipal(&model.User{ID: 7, Role: model.RoleChef, Email: "chef@example.org"}, "127.0.0.1", "go-test")
	if !p.HasRole(model.RoleAgent, model.RoleChef) {
		t.Fatalf("chef should match agent/chef roles")
	}
	if p.HasRole(model.RoleDirecteur) {
		t.Fatalf("chef should not match directeur")
	}
	if p.IsDirector() {
		t.Fatalf("chef is not a director")
	}
	if p.UserID != 7 || p.IP != "127.0.0.1" {
		t.Fatalf("unexpected principal %+v", p)
	}
}
