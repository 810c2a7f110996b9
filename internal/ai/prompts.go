// prompts.go - Prompt templates for product identification

package ai

import (
	"fmt"
	"strings"
)

// productSchema is embedded in every prompt so both providers emit the same keys.
const productSchema = `{
  "name": "string, product name as printed on the pack, without brand",
  "brand": "string",
  "variant": "string, flavour/colour/variant if printed, else empty",
  "unit": "string, net quantity with unit, e.g. \"200 ml\" or \"2 x 100 g\"",
  "category": "string, e.g. Toothpaste, Biscuits, Shampoo",
  "description": "string, one short sentence",
  "sku": "string, barcode digits if visible, else empty",
  "mrp": "number or null, maximum retail price in INR",
  "sellingPrice": "number or null",
  "hsn": "string, HSN code digits if known, else empty",
  "gst": "number or null, one of 0, 5, 12, 18, 28",
  "confidence": "number between 0 and 1"
}`

const singleItemInstructions = `You identify retail products from photos for an Indian shop's inventory.
Look at the image and identify the single most prominent product.

Rules:
- Read the label. Prefer printed text over guesses.
- Never invent a barcode or price. Use empty string or null when unknown.
- Keep "name" free of marketplace text such as "Buy online" or site names.
- "confidence" reflects how sure you are of name AND brand together.

Respond with ONLY one JSON object matching this schema, no markdown:
%s`

const multiItemInstructions = `You identify retail products from photos for an Indian shop's inventory.
The image may contain several different products. List every distinct product you can see.

Rules:
- One entry per distinct product, not per physical unit.
- Read the labels. Never invent a barcode or price.
- Skip items you cannot name.

Respond with ONLY a JSON object of the form {"products": [ ... ]}, no markdown,
where each element matches this schema:
%s`

// BuildIdentifyPrompt returns the single-item prompt, grounded with textContext when present.
func BuildIdentifyPrompt(textContext string) string {
	return withContext(fmt.Sprintf(singleItemInstructions, productSchema), textContext)
}

// BuildMultiPrompt returns the multi-item prompt.
func BuildMultiPrompt(textContext string) string {
	return withContext(fmt.Sprintf(multiItemInstructions, productSchema), textContext)
}

func withContext(prompt, textContext string) string {
	textContext = strings.TrimSpace(textContext)
	if textContext == "" {
		return prompt
	}
	return prompt + "\n\nHints extracted from the image and lookups (may be incomplete or wrong):\n" + textContext
}
