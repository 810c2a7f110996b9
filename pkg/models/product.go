package models

import "time"

// ProviderResult is the best-effort guess every provider adapter emits,
// whatever its upstream wire format looks like.
type ProviderResult struct {
	Name         string   `json:"name"`
	Brand        string   `json:"brand"`
	Unit         string   `json:"unit"`
	Category     string   `json:"category"`
	Description  string   `json:"description"`
	SKU          string   `json:"sku"`
	MRP          *float64 `json:"mrp"`
	SellingPrice *float64 `json:"sellingPrice"`
	HSN          string   `json:"hsn"`
	GST          *float64 `json:"gst"`
	Variant      string   `json:"variant"`
	Confidence   float64  `json:"confidence"` // 0..1
	Source       string   `json:"source"`
}

// Product is the cleaned, UI-ready record owned by the pipeline.
type Product struct {
	ProductName  string   `json:"productName" bson:"productName"`
	Brand        string   `json:"brand" bson:"brand"`
	Variant      string   `json:"variant" bson:"variant"`
	Category     string   `json:"category" bson:"category"`
	Unit         string   `json:"unit" bson:"unit"`
	Description  string   `json:"description" bson:"description"`
	Code         string   `json:"code" bson:"code"`
	MRP          *float64 `json:"mrp" bson:"mrp,omitempty"`
	SellingPrice *float64 `json:"sellingPrice,omitempty" bson:"sellingPrice,omitempty"`
	HSN          string   `json:"hsn" bson:"hsn"`
	GST          *float64 `json:"gst" bson:"gst,omitempty"`
	Source       string   `json:"source" bson:"source"`
	Confidence   float64  `json:"confidence" bson:"confidence"`
}

// Autofill is the field-renamed subset consumed by inventory form pre-fill.
type Autofill struct {
	Name         string   `json:"name"`
	Brand        string   `json:"brand"`
	Variant      string   `json:"variant"`
	Category     string   `json:"category"`
	Unit         string   `json:"unit"`
	Description  string   `json:"description"`
	Barcode      string   `json:"barcode"`
	MRP          *float64 `json:"mrp"`
	SellingPrice *float64 `json:"sellingPrice,omitempty"`
	HSNCode      string   `json:"hsnCode"`
	GSTRate      *float64 `json:"gstRate"`
}

// Autofill derives the form pre-fill view from the product.
func (p Product) Autofill() Autofill {
	return Autofill{
		Name:         p.ProductName,
		Brand:        p.Brand,
		Variant:      p.Variant,
		Category:     p.Category,
		Unit:         p.Unit,
		Description:  p.Description,
		Barcode:      p.Code,
		MRP:          p.MRP,
		SellingPrice: p.SellingPrice,
		HSNCode:      p.HSN,
		GSTRate:      p.GST,
	}
}

// CacheEntry is one content-addressed cache record. The fingerprint is the key
// and never changes once written.
type CacheEntry struct {
	Fingerprint string    `json:"fingerprint" bson:"_id"`
	Best        Product   `json:"best" bson:"best"`
	ImagePath   string    `json:"imagePath,omitempty" bson:"imagePath,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}
