package bot

// =============================================================================
// General messages
// =============================================================================

const (
	MsgOk            = `Ok!`
	MsgUnexpectedErr = `Unexpected error: %s`
	MsgStart         = `
		Send me a photo and I will write stock metadata for it.

		Send it as a *file* to keep the original quality. A caption is used as a hint for the keywords.

		/platform - choose the marketplace
		/lang - choose the keyword language
		/trends - keyword trends of your photos
		/export - download your metadata as CSV
		/uploads - marketplace review status`
	MsgVersionInfo = "Version: %s\nBuilt: %s"
)

// =============================================================================
// Metadata messages
// =============================================================================

const (
	MsgProcessing        = "Analyzing photo..."
	MsgDownloadFailed    = "Could not download the photo: %s"
	MsgUnsupportedFile   = "That file is not a supported image. Send a JPEG, PNG, TIFF or WebP."
	MsgGenerationFailed  = "_The generator was unavailable, so this metadata is based on the file name and colors only._"
	MsgValidationHeader  = "⚠️ *Not ready for %s:*"
	MsgMetadataResultFmt = `
		*%s*

		%s

		*Keywords (%d):*
		%s

		Category: %s
		SEO score: %.2f, potential: %s`
)

// =============================================================================
// Settings messages
// =============================================================================

const (
	MsgSelectPlatform    = "Which marketplace are you shooting for?"
	MsgPlatformSet       = "✅ Marketplace: *%s*"
	MsgUnknownPlatform   = "Unknown marketplace. Choose one of: %s"
	MsgSelectLanguage    = "Which keywords should I include?"
	MsgLanguageSet       = "✅ Keywords: *%s*"
	MsgUnknownLanguage   = "Unknown choice. Use primary, secondary or both."
	MsgSettingsNotStored = "Settings could not be saved, they apply to this session only."
)

// =============================================================================
// Trends and export messages
// =============================================================================

const (
	MsgNoRecords      = "No metadata yet. Send a photo first."
	MsgTrendsHeader   = "*Trends over your last %s*"
	MsgTrendsAverage  = "Average SEO score: %.2f"
	MsgTrendsCaption  = "Top keywords"
	MsgExportCaption  = "Metadata for %s"
	MsgNoUploads      = "No uploads yet."
	MsgUploadsHeader  = "*Recent uploads:*\n"
	MsgUploadsLineFmt = "• %s %s (%s)\n"
)

// =============================================================================
// Admin command messages
// =============================================================================

const (
	MsgAdminAllowUsage  = "Usage: `/allow <user_id>`"
	MsgAdminDenyUsage   = "Usage: `/deny <user_id>`"
	MsgAdminInvalidID   = "Invalid user ID. Give a number."
	MsgAdminUserAdded   = "✅ User `%d` added."
	MsgAdminUserRemoved = "🗑 User `%d` removed."
	MsgAdminNoUsers     = "No allowed users."
	MsgAdminUsersHeader = "*Allowed users:*\n"
)

// =============================================================================
// Buttons
// =============================================================================

const (
	BtnPrimary   = "English"
	BtnSecondary = "Chinese"
	BtnBoth      = "Both"
)
