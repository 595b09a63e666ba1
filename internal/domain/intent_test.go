package domain

import "testing"

func TestNewPage(t *testing.T) {
	ten, neg, huge := int32(10), int32(-5), int32(1000)

	tests := []struct {
		name          string
		limit, offset *int32
		want          Page
	}{
		{"defaults", nil, nil, Page{Limit: 20}},
		{"explicit", &ten, &ten, Page{Limit: 10, Offset: 10}},
		{"negative", &neg, &neg, Page{Limit: 20}},
		{"too large", &huge, nil, Page{Limit: MaxPageSize}},
	}
	for _, tt := range tests {
		if got := NewPage(tt.limit, tt.offset); got != tt.want {
			t.Errorf("%s: NewPage() = %+v, want %+v", tt.name, got, tt.want)
		}
	}
}

func TestPage_Window(t *testing.T) {
	p := Page{Limit: 2, Offset: 3}
	if s, e := p.Window(4); s != 3 || e != 4 {
		t.Errorf("Window(4) = %d,%d want 3,4", s, e)
	}
	if s, e := p.Window(1); s != 1 || e != 1 {
		t.Errorf("Window(1) = %d,%d want 1,1", s, e)
	}
}
