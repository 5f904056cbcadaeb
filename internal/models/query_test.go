package models

import (
	"testing"
)

func TestQueryRequest_Normalize(t *testing.T) {
	q := &QueryRequest{Question: "  what is the refund policy?\n\t"}
	q.Normalize()
	if q.Question != "what is the refund policy?" {
		t.Errorf("Normalize() = %q", q.Question)
	}
}

func TestUploadListQuery_Validate(t *testing.T) {
	tests := []struct {
		name       string
		query      UploadListQuery
		wantLimit  int
		wantOffset int
	}{
		{"defaults limit", UploadListQuery{}, 50, 0},
		{"caps limit", UploadListQuery{Limit: 10000}, 500, 0},
		{"negative offset", UploadListQuery{Limit: 5, Offset: -3}, 5, 0},
		{"keeps valid values", UploadListQuery{Limit: 20, Offset: 40}, 20, 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.query
			q.Validate()
			if q.Limit != tt.wantLimit || q.Offset != tt.wantOffset {
				t.Errorf("Validate() = {%d %d}, want {%d %d}", q.Limit, q.Offset, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}
