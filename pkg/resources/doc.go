// Package resources synthesizes placeholder image and audio assets for a
// generated game. Sprites are drawn procedurally and returned as PNG data
// URIs; sound effects are synthesized sine tones returned as WAV data URIs.
// The generated game references these assets directly, so no asset hosting
// is needed.
package resources
