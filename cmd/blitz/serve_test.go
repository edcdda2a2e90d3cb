package main

import "testing"

func TestParseUsers(t *testing.T) {
	tests := []struct {
		name    string
		specs   []string
		wantErr bool
	}{
		{"email password role", []string{"a@b.c:pw:admin"}, false},
		{"email password only", []string{"a@b.c:pw"}, false},
		{"multiple", []string{"a@b.c:pw", "d@e.f:pw2:editor"}, false},
		{"missing password", []string{"a@b.c"}, true},
		{"empty email", []string{":pw"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, err := parseUsers(tt.specs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseUsers() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if len(users) != len(tt.specs) {
				t.Errorf("parsed %d users, want %d", len(users), len(tt.specs))
			}
		})
	}
}

func TestParseUsersRole(t *testing.T) {
	users, err := parseUsers([]string{"a@b.c:pw:admin"})
	if err != nil {
		t.Fatalf("parseUsers() error = %v", err)
	}
	u := users["a@b.c"]
	if u.password != "pw" || u.role != "admin" {
		t.Errorf("parsed user = %+v", u)
	}
}
