package alphavantage

import (
	"strings"

	"github.com/rickgao/stock-prices/internal/model"
)

// FieldsFor returns the payload field names for a time-series function.
// Adjusted series insert "5. adjusted close" and shift volume to "6. volume".
func FieldsFor(function string) model.FieldMap {
	fm := model.FieldMap{
		Open:   "1. open",
		High:   "2. high",
		Low:    "3. low",
		Close:  "4. close",
		Volume: "5. volume",
	}
	if strings.HasSuffix(strings.ToUpper(function), "_ADJUSTED") {
		fm.Volume = "6. volume"
	}
	return fm
}
