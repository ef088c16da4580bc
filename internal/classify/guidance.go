package classify

type guidance struct {
	userMessage     string
	suggestedAction string
}

var guidanceTable = map[Subsystem]map[Kind]guidance{
	SubsystemMetadata: {
		KindQuotaExceeded: {
			"The video platform API quota has been used up.",
			"Wait for the daily quota to reset, then retry.",
		},
		KindItemNotFound: {
			"The video could not be found.",
			"Check the link or ID and make sure the video has not been removed.",
		},
		KindItemPrivate: {
			"The video is private.",
			"Ask the owner to make it public or unlisted, or remove it from the list.",
		},
		KindContainerNotFound: {
			"The channel or playlist could not be found.",
			"Check the channel handle, channel ID or playlist ID.",
		},
		KindAPIKeyInvalid: {
			"The video platform API key was rejected.",
			"Set a valid key under youtube.api-key and try again.",
		},
		KindUnknown: {
			"Fetching video details failed.",
			"Retry later. If the problem persists, check the logs.",
		},
	},
	SubsystemTranscript: {
		KindNoCaptions: {
			"This video has no captions.",
			"Enable the audio transcription fallback or choose a video with captions.",
		},
		KindVideoPrivate: {
			"The video is private, so its captions cannot be read.",
			"Make the video public or unlisted and retry.",
		},
		KindVideoNotFound: {
			"The video is unavailable.",
			"Check that the video still exists and is not region locked.",
		},
		KindLanguageUnsupported: {
			"Captions exist but not in a supported language.",
			"Enable the audio transcription fallback or change transcript.languages.",
		},
		KindProviderError: {
			"The caption service returned an error.",
			"Retry in a few minutes.",
		},
		KindTranscriptionFailed: {
			"Audio transcription failed.",
			"Check that yt-dlp, ffmpeg and whisper are installed and configured.",
		},
		KindUnknown: {
			"Getting the transcript failed.",
			"Retry later. If the problem persists, check the logs.",
		},
	},
	SubsystemLLM: {
		KindRateLimit: {
			"The language model provider is rate limiting requests.",
			"Wait a minute and retry, or lower batch.max-concurrent.",
		},
		KindTokenLimit: {
			"The response hit the model's token limit.",
			"Use a shorter summary length or a model with a larger output limit.",
		},
		KindContextTooLong: {
			"The transcript is too long for the model.",
			"Lower llm.max-transcript-chars or select a model with a larger context window.",
		},
		KindAPIKeyInvalid: {
			"The language model API key was rejected.",
			"Check the provider API key in the configuration.",
		},
		KindQuotaExceeded: {
			"The language model quota or budget has been used up.",
			"Raise the provider quota or llm.monthly-budget, or wait for it to reset.",
		},
		KindTimeout: {
			"The language model did not answer in time.",
			"Retry. Long transcripts may need a higher llm.timeout.",
		},
		KindUnknown: {
			"Analysis by the language model failed.",
			"Retry later or configure another provider.",
		},
	},
	SubsystemPipeline: {
		KindTimeout: {
			"Processing took too long.",
			"Retry the item.",
		},
		KindUnknown: {
			"Processing failed unexpectedly.",
			"Retry the item. If the problem persists, check the logs.",
		},
	},
}

func guidanceFor(subsystem Subsystem, kind Kind) guidance {
	if kinds, ok := guidanceTable[subsystem]; ok {
		if g, ok := kinds[kind]; ok {
			return g
		}
		if g, ok := kinds[KindUnknown]; ok {
			return g
		}
	}
	return guidance{
		userMessage:     "Processing failed.",
		suggestedAction: "Retry later.",
	}
}
