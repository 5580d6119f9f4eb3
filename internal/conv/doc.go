// Package conv provides checked integer conversions.
//
// Point indices are stored in 32-bit bitmaps and object sizes arrive as
// int64, so both are range checked before use. Conversions that are safe by
// construction use plain casts.
package conv
