package utils

import "testing"

func TestJwtRoundTripCarriesIdentity(t *testing.T) {
	token, err := JwtGenerate(42, "estateClerk", "biz-1", "OPERATOR")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	validated, err := JwtValidate(token)
	if err != nil || !validated.Valid {
		t.Fatalf("validate: %v", err)
	}
	claim, ok := validated.Claims.(*JwtCustomClaim)
	if !ok {
		t.Fatalf("unexpected claims type %T", validated.Claims)
	}

	if claim.ID != 42 || claim.BusinessId != "biz-1" || claim.Role != "OPERATOR" {
		t.Fatalf("claims did not round trip: %+v", claim)
	}
	// The name claim feeds the alias audit trail's confirmed_by column.
	if claim.Name != "estateClerk" {
		t.Fatalf("expected name claim to round trip, got %q", claim.Name)
	}
}
