//go:build !itcm64 && !itcm192

package layout

const (
	Variant = "itcm128"
	ITCM    = Split128
	DTCM    = Split64
)
