// Package annotate draws numbered face boxes onto images.
//
// Each detection gets an outline in its palette color, and a filled label
// of the same color carrying its number in white. Outline width and font
// size scale with the smaller image dimension, so marks stay readable on
// thumbnails and on large photos alike.
//
// Colors come from a fixed 10-entry Palette and repeat every 10 numbers.
// Labels sit above their box unless that would push them off the top of the
// image, in which case they are drawn inside the box's top edge.
//
// Fonts are resolved by FontLoader, which never fails: configured TrueType
// files first, then the embedded Go Regular font, then a 7x13 bitmap font.
package annotate
