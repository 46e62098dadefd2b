package model

type DatasetInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type Column struct {
	ID           int64  `json:"id,omitempty"`
	Name         string `json:"name"`
	FieldName    string `json:"fieldName,omitempty"`
	DataTypeName string `json:"dataTypeName"`
	Description  string `json:"description,omitempty"`
	Position     int    `json:"position,omitempty"`
}

// Row maps column field names to cell values.
type Row map[string]interface{}
