package boq

// Exception is a row that failed validation, with the reason attached.
// Exceptions land on their own workbook sheet instead of failing the job.
type Exception struct {
	Row
	Issue string
}

// Validate flags rows with no usable identity or description.
func Validate(rows []Row) []Exception {
	var problems []Exception
	for _, r := range rows {
		if r.Identity() == "" {
			problems = append(problems, Exception{Row: r, Issue: "missing identity"})
		}
		if r.Desc == "" {
			problems = append(problems, Exception{Row: r, Issue: "missing desc"})
		}
	}
	return problems
}
