package apportion

// LineItem is the read-only view of a cart or order line.
type LineItem interface {
	GUID() string
	SkuCode() string
	IsBundle() bool
	Constituents() []LineItem
	IsDiscountable() bool
}

// Collect flattens bundles into their leaves, depth first and in sibling order,
// and keeps only the leaves that accept a discount.
func Collect(items []LineItem) []LineItem {
	out := make([]LineItem, 0, len(items))
	stack := make([]LineItem, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		stack = append(stack, items[i])
	}

	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if item == nil {
			continue
		}
		if item.IsBundle() {
			children := item.Constituents()
			for i := len(children) - 1; i >= 0; i-- {
				stack = append(stack, children[i])
			}
			continue
		}
		if item.IsDiscountable() {
			out = append(out, item)
		}
	}
	return out
}
