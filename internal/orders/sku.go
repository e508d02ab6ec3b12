package orders

import (
	"fmt"
	"strings"
)

// Catalog SKUs are hyphen-delimited templates of the form
// Name-Color-Size-Design-PrintLocation-PrintType (e.g. MRnHs-Pu-S-Floral_A_1-Bk-dtf).
// One catalog product stands for a whole color/size family; the order line
// carries the SKU with the customer's chosen variant substituted in.

const skuMinSegments = 3

// ParseColorSize extracts the template's color (segment 2) and size (segment 3).
func ParseColorSize(sku string) (color, size string, err error) {
	parts := strings.Split(sku, "-")
	if len(parts) < skuMinSegments {
		return "", "", fmt.Errorf("malformed sku %q: want at least %d segments", sku, skuMinSegments)
	}
	return parts[1], parts[2], nil
}

// VariantSKU returns the SKU with color and size substituted into segments 2
// and 3. All other segments are preserved verbatim.
func VariantSKU(sku, color, size string) (string, error) {
	parts := strings.Split(sku, "-")
	if len(parts) < skuMinSegments {
		return "", fmt.Errorf("malformed sku %q: want at least %d segments", sku, skuMinSegments)
	}
	parts[1] = color
	parts[2] = size
	return strings.Join(parts, "-"), nil
}
