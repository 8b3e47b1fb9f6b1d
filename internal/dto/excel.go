package dto

// ImportResult summarises a spreadsheet upload.
type ImportResult struct {
	TotalRows int      `json:"totalRows"`
	Inserted  int      `json:"inserted"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors"`
}

// ExportQuery selects the rows and encoding of an export.
type ExportQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=xlsx csv pdf"`
	Status string `form:"status" validate:"omitempty,oneof=active terminated all"`
}
