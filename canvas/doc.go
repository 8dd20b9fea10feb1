// Package canvas provides the drawing surface handed to analysis snippets.
//
// A Figure owns one Axes. Plot calls made by a snippet do not touch any
// global plotting state: they append Marks to the Axes, so the outcome of
// an execution is a plain data structure the caller can inspect, compare,
// serialise or render to PNG with RenderPNG.
package canvas
