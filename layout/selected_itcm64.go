//go:build itcm64

package layout

const (
	Variant = "itcm64"
	ITCM    = Split64
	DTCM    = Split192
)
