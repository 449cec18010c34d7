package core

import (
	"context"
	"fmt"
	"strings"
)

// ImportRow is one parsed CSV data row. Number is the line in the source
// file (the header is line 1). Fields carries the resolved record fields by
// JSON name; references that could not be resolved are absent.
type ImportRow struct {
	Number     int
	ID         string
	Identifier string
	Fields     Patch
}

// ImportReport separates the successful rows from the per-row failures.
type ImportReport struct {
	Created   int
	Updated   int
	Successes []string
	Errors    []string
}

const maxReportedImportErrors = 20

// Summary renders the outcome of an import the way it is shown to users.
func (r ImportReport) Summary() (title, message string) {
	if len(r.Errors) == 0 {
		return "Import Successful", fmt.Sprintf("Successfully imported and processed %d records.", len(r.Successes))
	}
	msg := "No records were imported."
	if len(r.Successes) > 0 {
		msg = fmt.Sprintf("%d records imported successfully.", len(r.Successes))
	}
	shown := r.Errors
	if len(shown) > maxReportedImportErrors {
		shown = shown[:maxReportedImportErrors]
	}
	msg += fmt.Sprintf("\n\n%d records failed:\n- %s", len(r.Errors), strings.Join(shown, "\n- "))
	if len(r.Errors) > maxReportedImportErrors {
		msg += "\n- ...and more"
	}
	return "Import Complete with Errors", msg
}

type requiredField struct {
	name    string
	message string
}

// importRequirements lists, per view, the fields a row must resolve, in the
// order they are checked.
var importRequirements = map[View][]requiredField{
	ViewConnects: {
		{"title", "Missing 'Title'."},
		{"startupId", "Could not find a Startup Organization for row."},
		{"corporateId", "Could not find a Corporate Organization for row."},
		{"ownerId", "Could not find an Owner by email for row."},
		{"statusId", "Could not find a Status for row."},
	},
	ViewLeads: {
		{"name", "Missing 'Name'."},
		{"ownerId", "Could not find a matching Owner by email."},
		{"intentLevelId", "Could not find a matching Intent Level."},
		{"needTypeId", "Could not find a matching Need Type."},
	},
	ViewStartups:   {{"name", "Missing 'Name'."}},
	ViewCorporates: {{"name", "Missing 'Name'."}},
	ViewStakeholders: {
		{"name", "Missing 'Name'."},
		{"email", "Missing 'Email'."},
		{"affiliation", "Missing 'Affiliation'."},
	},
}

// ImportableViews lists the views that accept CSV imports.
func ImportableViews() []View {
	return []View{ViewConnects, ViewLeads, ViewStartups, ViewCorporates, ViewStakeholders}
}

func validateImportRow(v View, fields Patch) error {
	for _, req := range importRequirements[v] {
		val, ok := fields[req.name]
		if !ok || val == nil {
			return ValidationError{Kind: v.Kind(), Field: req.name, Message: req.message}
		}
		if s, isString := val.(string); isString && strings.TrimSpace(s) == "" {
			return ValidationError{Kind: v.Kind(), Field: req.name, Message: req.message}
		}
	}
	return nil
}

// Import writes parsed rows into the collection of view. Each row is
// validated and committed on its own; a failing row is reported and the
// import moves on. A row whose id matches a stored record is merged into it,
// any other row creates a new record.
func (s *Service) Import(ctx context.Context, v View, rows []ImportRow) (ImportReport, error) {
	var report ImportReport
	if _, ok := importRequirements[v]; !ok {
		return report, fmt.Errorf("import is not available for the %s view", v)
	}
	kind := v.Kind()
	c := kind.Collection()
	for _, row := range rows {
		ident := row.Identifier
		if ident == "" {
			ident = "N/A"
		}
		updated := false
		err := s.run(ctx, "import_"+string(kind), kind, row.ID, func(ctx context.Context) (string, error) {
			if err := validateImportRow(v, row.Fields); err != nil {
				return row.ID, err
			}
			id := row.ID
			err := s.transact(ctx, func(tx Transaction) error {
				fields := make(Patch, len(row.Fields))
				for k, val := range row.Fields {
					if k == "id" || val == nil {
						continue
					}
					fields[k] = val
				}
				if id != "" {
					if _, ok := tx.Snapshot().Find(c, id); ok {
						updated = true
						return tx.Update(c, id, fields)
					}
				}
				newID, err := tx.Add(c, map[string]any(fields))
				id = newID
				return err
			})
			return id, err
		})
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("Row %d (\"%s\"): %s", row.Number, ident, err.Error()))
			continue
		}
		if updated {
			report.Updated++
			report.Successes = append(report.Successes, fmt.Sprintf("Row %d: Updated \"%s\".", row.Number, ident))
		} else {
			report.Created++
			report.Successes = append(report.Successes, fmt.Sprintf("Row %d: Created \"%s\".", row.Number, ident))
		}
	}
	return report, nil
}
