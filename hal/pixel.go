package hal

// packRGB565 folds 8-bit channels into the 16-bit 565 pixel the
// surface stores: rrrrrggggggbbbbb.
func packRGB565(r, g, b uint8) uint16 {
	return uint16(r&0xF8)<<8 | uint16(g&0xFC)<<3 | uint16(b)>>3
}

// unpackRGB565 expands a 565 pixel back to 8-bit channels, replicating
// the top bits into the low ones so full intensity maps to 0xFF.
func unpackRGB565(p uint16) (r, g, b uint8) {
	r = uint8(p>>8) & 0xF8
	g = uint8(p>>3) & 0xFC
	b = uint8(p<<3) & 0xF8
	return r | r>>5, g | g>>6, b | b>>5
}
