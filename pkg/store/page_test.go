package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageOf(t *testing.T) {
	for _, tc := range []struct {
		name         string
		number, size int
		want         Page
	}{
		{"Defaults", 0, 0, Page{Number: 1, Size: DefaultPageSize}},
		{"Valid", 2, 50, Page{Number: 2, Size: 50}},
		{"NegativeNumber", -3, 10, Page{Number: 1, Size: 10}},
		{"NegativeSize", 1, -5, Page{Number: 1, Size: MinPageSize}},
		{"SizeTooLarge", 1, 1000, Page{Number: 1, Size: MaxPageSize}},
		{"SizeAtMax", 4, MaxPageSize, Page{Number: 4, Size: MaxPageSize}},
		{"NumberOnly", 3, 0, Page{Number: 3, Size: DefaultPageSize}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, PageOf(tc.number, tc.size))
		})
	}
}

func TestPageOffset(t *testing.T) {
	assert.Equal(t, 0, Page{Number: 1, Size: 30}.offset())
	assert.Equal(t, 60, Page{Number: 3, Size: 30}.offset())
}
