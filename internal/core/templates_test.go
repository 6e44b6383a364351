package core

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// ============================================================================
// AutoMap
// ============================================================================

func TestAutoMap(t *testing.T) {
	headers := []string{"Payment Number", "Amount", "Tax", "E-mail", "First Name", "last_name", "Products", "Purchase Date", "Notes"}

	got := AutoMap(headers)

	want := map[Field]string{
		FieldNumber:    "Payment Number",
		FieldTotal:     "Amount",
		FieldTax:       "Tax",
		FieldEmail:     "E-mail",
		FieldFirstName: "First Name",
		FieldLastName:  "last_name",
		FieldDownloads: "Products",
		FieldDate:      "Purchase Date",
	}
	for f, col := range want {
		if got[f] != col {
			t.Errorf("AutoMap()[%s] = %q, want %q", f, got[f], col)
		}
	}
	if len(got) != len(want) {
		t.Errorf("AutoMap() mapped %d fields, want %d: %v", len(got), len(want), got)
	}
}

func TestAutoMap_HeaderUsedOnce(t *testing.T) {
	// Both headers are spellings of the e-mail field; only the first is used.
	got := AutoMap([]string{"State", "Email", "Customer Email"})
	if got[FieldState] != "State" {
		t.Errorf("AutoMap()[state] = %q, want State", got[FieldState])
	}
	if got[FieldEmail] != "Email" {
		t.Errorf("AutoMap()[email] = %q, want Email", got[FieldEmail])
	}
	if len(got) != 2 {
		t.Errorf("AutoMap() = %v, want state and email only", got)
	}
}

// ============================================================================
// ValidateMapping
// ============================================================================

func TestValidateMapping(t *testing.T) {
	headers := []string{"Total", "Email"}

	tests := []struct {
		name    string
		mapping FieldMapping
		headers []string
		wantErr string
	}{
		{name: "valid", mapping: FieldMapping{FieldTotal: "Total"}, headers: headers},
		{name: "empty entries are unmapped", mapping: FieldMapping{FieldTotal: "Total", FieldTax: ""}, headers: headers},
		{name: "no headers skips column check", mapping: FieldMapping{FieldTotal: "Anything"}},
		{name: "nothing mapped", mapping: FieldMapping{FieldTotal: " "}, headers: headers, wantErr: "required field"},
		{name: "unknown field", mapping: FieldMapping{FieldTotal: "Total", Field("bogus"): "Email"}, headers: headers, wantErr: "invalid enum"},
		{name: "missing column", mapping: FieldMapping{FieldTotal: "Amount"}, headers: headers, wantErr: "column not found"},
		{name: "only unknown fields", mapping: FieldMapping{Field("amount"): "Total"}, headers: headers, wantErr: `unknown field "amount"`},
		{name: "unknown field wins over missing column", mapping: FieldMapping{FieldTax: "Vat", Field("amount"): "Total"}, headers: headers, wantErr: "invalid enum"},
		{name: "first unknown field by name", mapping: FieldMapping{Field("zeta"): "Total", Field("alpha"): "Email"}, wantErr: `unknown field "alpha"`},
		{name: "missing columns in field order", mapping: FieldMapping{FieldTax: "Vat", FieldTotal: "Amount"}, headers: headers, wantErr: `"Amount" mapped to total`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Repeat so map iteration order cannot hide a nondeterministic result.
			for i := 0; i < 20; i++ {
				err := ValidateMapping(tt.mapping, tt.headers)
				if tt.wantErr == "" {
					if err != nil {
						t.Fatalf("ValidateMapping() error = %v, want nil", err)
					}
					continue
				}
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("ValidateMapping() error = %v, want containing %q", err, tt.wantErr)
				}
			}
		})
	}
}

// ============================================================================
// Template matching
// ============================================================================

func TestMatchTemplates(t *testing.T) {
	templates := []MappingTemplate{
		{Name: "shop export", Headers: []string{"Order Number", "Total", "Email"}},
		{Name: "partial", Headers: []string{"Order Number", "Total", "Email", "Coupon"}},
		{Name: "other", Headers: []string{"SKU", "Qty"}},
		{Name: "no headers"},
	}

	got := MatchTemplates(templates, []string{"order_number", "TOTAL", "email", "Extra"})

	if len(got) != 2 {
		t.Fatalf("MatchTemplates() = %d matches, want 2", len(got))
	}
	if got[0].Template.Name != "shop export" || got[0].MatchScore != 1 {
		t.Errorf("best match = %s (%v), want shop export (1)", got[0].Template.Name, got[0].MatchScore)
	}
	if got[1].Template.Name != "partial" || got[1].MatchScore != 0.75 {
		t.Errorf("second match = %s (%v), want partial (0.75)", got[1].Template.Name, got[1].MatchScore)
	}
}

func TestService_Templates(t *testing.T) {
	f := newServiceFixture(t, ServiceConfig{})
	ctx := context.Background()
	headers := []string{"Total", "Email"}

	tmpl, err := f.svc.CreateTemplate(ctx, "Shop", FieldMapping{FieldTotal: "Total"}, headers)
	if err != nil {
		t.Fatalf("CreateTemplate() error = %v", err)
	}
	if _, err := f.svc.CreateTemplate(ctx, "Archive", FieldMapping{FieldEmail: "Email"}, headers); err != nil {
		t.Fatalf("CreateTemplate() error = %v", err)
	}

	t.Run("duplicate name", func(t *testing.T) {
		_, err := f.svc.CreateTemplate(ctx, "shop", FieldMapping{FieldTotal: "Total"}, headers)
		if got := MapError(err).Code; got != "DB002" {
			t.Errorf("MapError(%v) = %s, want DB002", err, got)
		}
	})

	t.Run("blank name", func(t *testing.T) {
		_, err := f.svc.CreateTemplate(ctx, "  ", FieldMapping{FieldTotal: "Total"}, headers)
		if got := MapError(err).Code; got != "IMP003" {
			t.Errorf("MapError(%v) = %s, want IMP003", err, got)
		}
	})

	t.Run("sorted by name", func(t *testing.T) {
		list, err := f.svc.Templates(ctx)
		if err != nil {
			t.Fatalf("Templates() error = %v", err)
		}
		if len(list) != 2 || list[0].Name != "Archive" || list[1].Name != "Shop" {
			t.Errorf("Templates() = %v, want [Archive Shop]", list)
		}
	})

	t.Run("match", func(t *testing.T) {
		matches, err := f.svc.MatchTemplates(ctx, []string{"Total", "Email"})
		if err != nil {
			t.Fatalf("MatchTemplates() error = %v", err)
		}
		if len(matches) != 2 {
			t.Errorf("MatchTemplates() = %d matches, want 2", len(matches))
		}
	})

	t.Run("get and delete", func(t *testing.T) {
		got, err := f.svc.Template(ctx, tmpl.ID)
		if err != nil || got.Name != "Shop" {
			t.Fatalf("Template() = %v, %v", got, err)
		}
		if err := f.svc.DeleteTemplate(ctx, tmpl.ID); err != nil {
			t.Fatalf("DeleteTemplate() error = %v", err)
		}
		if _, err := f.svc.Template(ctx, tmpl.ID); !errors.Is(err, ErrTemplateNotFound) {
			t.Errorf("Template() after delete error = %v, want ErrTemplateNotFound", err)
		}
		if err := f.svc.DeleteTemplate(ctx, "nope"); !errors.Is(err, ErrTemplateNotFound) {
			t.Errorf("DeleteTemplate(invalid) error = %v, want ErrTemplateNotFound", err)
		}
	})

	actions := f.audit.actions()
	if len(actions) != 3 || actions[2] != ActionTemplateDelete {
		t.Errorf("audit actions = %v, want two creates and a delete", actions)
	}
}
