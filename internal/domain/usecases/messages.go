package usecases

// User-facing texts shown in the transcript and the prompt.
const (
	DefaultPlaceholder = "Describe what you're looking for..."
	CaptionPlaceholder = "Describe what you're looking for in this image (optional)..."

	EmptySubmissionText = "⚠️ Please type a search or upload an image."
	BusyText            = "⏳ Please wait for the current search to finish."
	ImageSearchLabel    = "🔍 Image search"
	LoadingText         = "Searching for the best products for you..."
	NoResultsText       = "😔 No results found for your search."
	ResultsHeaderFormat = "✨ Here are the %d products I found:"

	ErrorDetailFormat = "❌ There was an error processing your search: %s."
	ServerErrorText   = "❌ The search service returned an error. Please try again in a moment."
	NetworkErrorText  = "❌ There was an error processing your search: could not reach the search service. Please make sure the server is running."
)
