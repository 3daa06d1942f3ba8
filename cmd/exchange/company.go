package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/timmy/catalogx/internal/domain"
	"github.com/timmy/catalogx/internal/repository"
)

func companyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "company",
		Short: "Manage companies and their members",
	}
	cmd.AddCommand(companyCreateCmd())
	cmd.AddCommand(companyAddMemberCmd())
	return cmd
}

func openCompanies() (*repository.CompanyRepository, func(), error) {
	cfg, _, err := setup()
	if err != nil {
		return nil, nil, err
	}
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return repository.NewCompanyRepository(db), closeDB, nil
}

func companyCreateCmd() *cobra.Command {
	var name, admin string

	cmd := &cobra.Command{
		Use:   "create ID",
		Short: "Create a company, optionally with its first admin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			companies, closeDB, err := openCompanies()
			if err != nil {
				return err
			}
			defer closeDB()

			ctx := cmd.Context()
			if name == "" {
				name = args[0]
			}
			if err := companies.Create(ctx, &domain.Company{ID: args[0], Name: name}); err != nil {
				return err
			}
			if admin != "" {
				if err := companies.AddMember(ctx, &domain.CompanyMember{CompanyID: args[0], UserID: admin, Role: domain.RoleAdmin}); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "company %s created\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (default: the id)")
	cmd.Flags().StringVar(&admin, "admin", "", "user id to grant the admin role")
	return cmd
}

func companyAddMemberCmd() *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "add-member COMPANY USER",
		Short: "Grant a user access to a company",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := domain.MemberRole(role)
			if r != domain.RoleAdmin && r != domain.RoleMember {
				return fmt.Errorf("unknown role %q", role)
			}
			companies, closeDB, err := openCompanies()
			if err != nil {
				return err
			}
			defer closeDB()

			member := &domain.CompanyMember{CompanyID: args[0], UserID: args[1], Role: r}
			if err := companies.AddMember(cmd.Context(), member); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s of %s\n", args[1], r, args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", string(domain.RoleMember), "admin or member")
	return cmd
}
