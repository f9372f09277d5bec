//go:build itcm192

package layout

const (
	Variant = "itcm192"
	ITCM    = Split192
	DTCM    = Split64
)
