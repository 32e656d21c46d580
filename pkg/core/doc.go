// Package core provides the domain models and interfaces for flowline.
package core
