// Package composer assembles generated scene clips into the final movie by
// driving ffmpeg: crossfaded video, title and closing cards, and an optional
// background music track.
package composer
