package access

import "testing"

func TestCanViewAdminBypass(t *testing.T) {
	admin := &Principal{ID: "u1", Role: RoleAdmin}
	private := Visibility{IsPublic: false}
	if !CanView(admin, private) {
		t.Error("admin should see private content")
	}
}

func TestCanViewPublic(t *testing.T) {
	public := Visibility{IsPublic: true}
	if !CanView(nil, public) {
		t.Error("anonymous visitor should see public content")
	}
	guest := &Principal{ID: "u2", Role: RoleGuest}
	if !CanView(guest, public) {
		t.Error("guest should see public content")
	}
}

func TestCanViewAnonymousDeniedPrivate(t *testing.T) {
	if CanView(nil, Visibility{IsPublic: false, AllowedUsers: []string{"u1"}}) {
		t.Error("anonymous visitor must not see private content")
	}
}

func TestCanViewUserGrant(t *testing.T) {
	v := Visibility{AllowedUsers: []string{"u1", "u2"}}
	if !CanView(&Principal{ID: "u2", Role: RoleGuest}, v) {
		t.Error("explicitly granted user should see content")
	}
	if CanView(&Principal{ID: "u3", Role: RoleGuest}, v) {
		t.Error("ungranted user must not see content")
	}
}

func TestCanViewGroupGrant(t *testing.T) {
	v := Visibility{AllowedGroups: []string{"family"}}
	member := &Principal{ID: "u1", Role: RoleGuest, GroupAliases: []string{"friends", "family"}}
	outsider := &Principal{ID: "u2", Role: RoleGuest, GroupAliases: []string{"friends"}}

	if !CanView(member, v) {
		t.Error("group member should see content")
	}
	if CanView(outsider, v) {
		t.Error("non-member must not see content")
	}
}

func TestCanViewOwnerHasNoImplicitAccess(t *testing.T) {
	// Only admin bypasses visibility; owners follow the same grants
	owner := &Principal{ID: "u1", Role: RoleOwner}
	if CanView(owner, Visibility{AllowedUsers: []string{"u9"}}) {
		t.Error("owner without a grant must not see content")
	}
}

func TestCanUpload(t *testing.T) {
	admin := &Principal{ID: "a", Role: RoleAdmin}
	owner := &Principal{ID: "o", Role: RoleOwner, AllowedProviders: []string{"local", "s3main"}}
	openOwner := &Principal{ID: "o2", Role: RoleOwner}
	guest := &Principal{ID: "g", Role: RoleGuest}

	if !CanUpload(admin, "s3cold") {
		t.Error("admin should upload anywhere")
	}
	if !CanUpload(owner, "s3main") {
		t.Error("owner should upload to an allowed provider")
	}
	if CanUpload(owner, "drive") {
		t.Error("owner must not upload to a provider outside the allow list")
	}
	if !CanUpload(openOwner, "drive") {
		t.Error("owner with empty allow list should upload anywhere")
	}
	if CanUpload(guest, "local") {
		t.Error("guest must not upload")
	}
	if CanUpload(nil, "local") {
		t.Error("anonymous must not upload")
	}
}

func TestValidRole(t *testing.T) {
	for _, r := range []string{"admin", "owner", "guest"} {
		if !ValidRole(r) {
			t.Errorf("role %s should be valid", r)
		}
	}
	if ValidRole("superuser") {
		t.Error("unknown role accepted")
	}
}
