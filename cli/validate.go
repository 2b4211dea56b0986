package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/georgepadayatti/pkixpath/certvalidator"
	"github.com/georgepadayatti/pkixpath/config"
	"github.com/georgepadayatti/pkixpath/internal/api"
)

// validationFlags override the validation section of the configuration.
type validationFlags struct {
	anchors       []string
	certs         []string
	crls          []string
	policies      []string
	ekus          []string
	moment        string
	validityModel string
	revocation    bool
	deltaCRLs     bool
	explicit      bool
	maxPathLength int
	fetch         bool
	json          bool
}

func (f *validationFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringArrayVar(&f.anchors, "anchor", nil, "Trust anchor certificate file (repeatable)")
	fs.StringArrayVar(&f.certs, "cert", nil, "Additional certificate file for path building and CRL signers (repeatable)")
	fs.StringArrayVar(&f.crls, "crl", nil, "CRL file (repeatable)")
	fs.StringArrayVar(&f.policies, "policy", nil, "Initial policy OID (repeatable, default any-policy)")
	fs.StringArrayVar(&f.ekus, "eku", nil, "Required extended key usage name or OID (repeatable)")
	fs.StringVar(&f.moment, "moment", "", "Validation date in RFC 3339 format (default now)")
	fs.StringVar(&f.validityModel, "validity-model", "", "Validity model: pkix or chain")
	fs.BoolVar(&f.revocation, "revocation", true, "Check revocation with CRLs")
	fs.BoolVar(&f.deltaCRLs, "delta-crls", false, "Use delta CRLs")
	fs.BoolVar(&f.explicit, "explicit-policy", false, "Require an acceptable policy")
	fs.IntVar(&f.maxPathLength, "max-path-length", certvalidator.DefaultMaxPathLength, "Maximum number of intermediates when building (-1 for no limit)")
	fs.BoolVar(&f.fetch, "fetch", false, "Download CRLs and issuer certificates from the locations certificates name")
	fs.BoolVar(&f.json, "json", false, "Output results in JSON format")
}

// apply copies the flags the user set onto cfg and revalidates it.
func (f *validationFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed
	cfg.Trust.Anchors = append(cfg.Trust.Anchors, f.anchors...)
	cfg.Stores.Certificates = append(cfg.Stores.Certificates, f.certs...)
	cfg.Stores.CRLs = append(cfg.Stores.CRLs, f.crls...)
	cfg.Validation.InitialPolicies = append(cfg.Validation.InitialPolicies, f.policies...)
	cfg.Validation.ExtKeyUsages = append(cfg.Validation.ExtKeyUsages, f.ekus...)
	if changed("moment") {
		cfg.Validation.Moment = f.moment
	}
	if changed("validity-model") {
		cfg.Validation.ValidityModel = f.validityModel
	}
	if changed("revocation") {
		cfg.Validation.Revocation = f.revocation
	}
	if changed("delta-crls") {
		cfg.Validation.DeltaCRLs = f.deltaCRLs
	}
	if changed("explicit-policy") {
		cfg.Validation.ExplicitPolicy = f.explicit
	}
	if changed("max-path-length") {
		cfg.Validation.MaxPathLength = f.maxPathLength
	}
	if changed("fetch") {
		cfg.Fetch.Enabled = f.fetch
	}
	return cfg.Validate()
}

// validationContext builds the context described by cfg.
func validationContext(cfg *config.Config) (*certvalidator.ValidationContext, error) {
	opts, err := cfg.ValidationOptions(logrus.StandardLogger())
	if err != nil {
		return nil, err
	}
	return certvalidator.NewValidationContext(opts...)
}

func report(cmd *cobra.Command, asJSON bool, res *certvalidator.ValidationResult, err error) error {
	if err != nil && certvalidator.KindOf(err) == 0 {
		return err
	}
	if perr := printReport(cmd.OutOrStdout(), api.NewValidationReport(res, err), asJSON); perr != nil {
		return perr
	}
	if err != nil {
		return ErrPathInvalid
	}
	return nil
}

func newValidateCommand(root *rootOptions) *cobra.Command {
	flags := &validationFlags{}
	cmd := &cobra.Command{
		Use:   "validate [flags] <target> [<issuer>...]",
		Short: "Validate an explicit certification path",
		Long: `Validate an explicit certification path.

The files hold PEM or DER certificates. Their certificates, taken in order,
form the path: the target first, each following certificate issuing the one
before it. The trust anchor is not part of the path.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.apply(cmd, root.cfg); err != nil {
				return err
			}
			path, err := config.ReadCertificateFiles(args)
			if err != nil {
				return err
			}
			vc, err := validationContext(root.cfg)
			if err != nil {
				return err
			}
			logrus.Debugf("validating a path of %d certificate(s)", len(path))
			res, err := certvalidator.NewPathValidator(vc).Validate(cmd.Context(), path)
			return report(cmd, flags.json, res, err)
		},
	}
	flags.register(cmd)
	return cmd
}

func newBuildCommand(root *rootOptions) *cobra.Command {
	flags := &validationFlags{}
	cmd := &cobra.Command{
		Use:   "build [flags] <target>",
		Short: "Build and validate a certification path for a target certificate",
		Long: `Build and validate a certification path for a target certificate.

Issuers are looked up in the --cert files and the configured certificate
stores. Every candidate path is validated; the first valid one is reported.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.apply(cmd, root.cfg); err != nil {
				return err
			}
			targets, err := config.ReadCertificateFiles(args)
			if err != nil {
				return err
			}
			vc, err := validationContext(root.cfg)
			if err != nil {
				return err
			}
			res, err := certvalidator.NewPathBuilder(vc).BuildFor(cmd.Context(), targets[0])
			return report(cmd, flags.json, res, err)
		},
	}
	flags.register(cmd)
	return cmd
}
