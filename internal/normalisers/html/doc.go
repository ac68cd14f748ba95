// Package html provides a Normaliser for HTML notes, such as letters
// exported from an EHR portal. Markup is converted to markdown and then
// reduced to plain text so paragraphs stay separated by blank lines.
package html
